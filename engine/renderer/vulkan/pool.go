package vulkan

import "sync"

// lockPool hands out one mutex per queue family. Vulkan requires external
// synchronization of a VkQueue, and graphics and present commonly share one.
type lockPool struct {
	mu           sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{queueMutexes: make(map[uint32]*sync.Mutex)}
}

func (p *lockPool) queue(family uint32) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.queueMutexes[family]
	if !ok {
		l = &sync.Mutex{}
		p.queueMutexes[family] = l
	}
	return l
}

// SafeQueueCall runs fn while holding the mutex of family.
func (p *lockPool) SafeQueueCall(family uint32, fn func() error) error {
	l := p.queue(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (p *lockPool) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueMutexes = make(map[uint32]*sync.Mutex)
}
