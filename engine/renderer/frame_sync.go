package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// FrameSlot is the synchronization triple of one frame in flight.
type FrameSlot struct {
	ImageAvailable driver.Semaphore
	RenderFinished driver.Semaphore
	InFlight       driver.Fence
}

// FrameSync owns one slot per swapchain image and the index of the slot the
// next frame uses. Fences start signaled so the first wait on each slot
// returns immediately.
type FrameSync struct {
	drv   driver.Driver
	slots []FrameSlot
	index uint32
}

func NewFrameSync(drv driver.Driver, count uint32) (*FrameSync, error) {
	if count == 0 {
		return nil, errors.New("frame sync needs at least one slot")
	}
	fs := &FrameSync{drv: drv, slots: make([]FrameSlot, 0, count)}
	for i := uint32(0); i < count; i++ {
		slot, err := fs.newSlot()
		if err != nil {
			fs.Destroy()
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		fs.slots = append(fs.slots, slot)
	}
	return fs, nil
}

func (fs *FrameSync) newSlot() (FrameSlot, error) {
	var slot FrameSlot
	var err error
	if slot.ImageAvailable, err = fs.drv.CreateSemaphore(); err != nil {
		return slot, err
	}
	if slot.RenderFinished, err = fs.drv.CreateSemaphore(); err != nil {
		fs.drv.DestroySemaphore(slot.ImageAvailable)
		return slot, err
	}
	if slot.InFlight, err = fs.drv.CreateFence(true); err != nil {
		fs.drv.DestroySemaphore(slot.RenderFinished)
		fs.drv.DestroySemaphore(slot.ImageAvailable)
		return slot, err
	}
	return slot, nil
}

func (fs *FrameSync) Count() uint32 {
	return uint32(len(fs.slots))
}

func (fs *FrameSync) Index() uint32 {
	return fs.index
}

func (fs *FrameSync) Current() FrameSlot {
	return fs.slots[fs.index]
}

// Advance moves to the next slot, wrapping at Count.
func (fs *FrameSync) Advance() {
	fs.index = (fs.index + 1) % fs.Count()
}

// SetIndex places the cursor at index modulo Count. Used to carry the frame
// index across a rebuild with a different slot count.
func (fs *FrameSync) SetIndex(index uint32) {
	fs.index = index % fs.Count()
}

// Destroy releases every slot. The caller must have waited for the device
// to go idle.
func (fs *FrameSync) Destroy() {
	for _, slot := range fs.slots {
		fs.drv.DestroyFence(slot.InFlight)
		fs.drv.DestroySemaphore(slot.RenderFinished)
		fs.drv.DestroySemaphore(slot.ImageAvailable)
	}
	fs.slots = nil
	fs.index = 0
}
