package assets

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/purrfect/engine/core"
)

// ErrAssetNotFound is returned for names that are not indexed.
var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Path       string
	Type       ResourceType
	LastLoaded time.Time
}

// AssetManager indexes every known asset below a root directory and, when
// watching, keeps the index current and reports changes on Changes.
// Names are slash separated paths relative to the root.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan core.AssetEvent
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create asset watcher")
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[ResourceType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan core.AssetEvent, 64),
		done:     make(chan struct{}),
	}, nil
}

// Initialize indexes assetsDir and registers the built-in loaders. With
// watch set, the directory tree is watched until Shutdown.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	images := &ImageLoader{}
	am.registerLoader(ResourceTypeShader, &ShaderLoader{})
	am.registerLoader(ResourceTypeImage, images)
	am.registerLoader(ResourceTypeImageHDR, images)

	if err := am.watchRecursive(root, watch); err != nil {
		return errors.Wrapf(err, "failed to index '%s'", root)
	}
	if watch {
		am.wg.Add(1)
		go am.start()
	}
	core.LogInfo("Asset manager indexed %d assets under '%s'.", am.Len(), root)
	return nil
}

// Changes delivers one event per created, written or removed asset. Events
// are dropped while the channel is full.
func (am *AssetManager) Changes() <-chan core.AssetEvent {
	return am.changes
}

func (am *AssetManager) Root() string {
	return am.root
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Names lists indexed assets of type t in lexical order.
func (am *AssetManager) Names(t ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var out []string
	for name, info := range am.assets {
		if info.Type == t {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the absolute path of name.
func (am *AssetManager) Resolve(name string) (string, error) {
	am.mutex.RLock()
	asset, exists := am.assets[name]
	am.mutex.RUnlock()
	if !exists {
		return "", errors.Wrapf(ErrAssetNotFound, "'%s'", name)
	}
	return asset.Path, nil
}

func (am *AssetManager) registerLoader(assetType ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads name with the loader registered for its type.
func (am *AssetManager) LoadAsset(name string) (*Resource, error) {
	am.mutex.Lock()
	asset, exists := am.assets[name]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[name] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, errors.Wrapf(ErrAssetNotFound, "'%s'", name)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type %s", asset.Type)
	}
	res, err := loader.Load(asset.Path)
	if err != nil {
		return nil, err
	}
	res.Name = name
	return res, nil
}

// ReadShader resolves name and returns its bytecode. It fits
// renderer.ShaderSource.
func (am *AssetManager) ReadShader(name string) ([]byte, error) {
	res, err := am.LoadAsset(name)
	if err != nil {
		return nil, err
	}
	code, ok := res.Data.([]byte)
	if !ok {
		return nil, errors.Newf("'%s' is a %s, not a shader", name, res.Type)
	}
	return code, nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := am.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("Cannot watch '%s': %s", e.Name, err)
			}
		}
		return
	}

	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if name, ok := am.handleFileEvent(e.Name); ok {
			am.notify(core.AssetEvent{Path: name})
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A removed directory cannot be stat'ed, so try to unwatch regardless.
		_ = am.fsnotify.Remove(e.Name)
		if name, ok := am.removeAsset(e.Name); ok {
			am.notify(core.AssetEvent{Path: name, Removed: true})
		}
	}
}

func (am *AssetManager) notify(e core.AssetEvent) {
	select {
	case am.changes <- e:
	default:
		core.LogWarn("Asset change queue full, dropping '%s'.", e.Path)
	}
}

// watchRecursive indexes every asset under path and, with watch set, adds
// each directory to the watch list.
func (am *AssetManager) watchRecursive(path string, watch bool) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if watch {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

func (am *AssetManager) name(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// handleFileEvent indexes path when it has a known asset type.
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	assetType := determineAssetType(path)
	if assetType == ResourceTypeNone {
		return "", false
	}
	name, ok := am.name(path)
	if !ok {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Path: path,
		Type: assetType,
	}
	return name, true
}

func (am *AssetManager) removeAsset(path string) (string, bool) {
	name, ok := am.name(path)
	if !ok {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, exists := am.assets[name]; !exists {
		return "", false
	}
	delete(am.assets, name)
	return name, true
}
