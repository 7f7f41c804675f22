package testbed

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/anima-resources/engine"
	"github.com/spaghettifunk/anima-resources/engine/assets/loaders"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
	"github.com/spaghettifunk/anima-resources/engine/systems"
)

const bootManifest = `
[[resource]]
type = "config"
name = "settings"

[[resource]]
type = "image"
name = "textures/checker"

[[resource]]
type = "text"
name = "credits"

[[resource]]
type = "binary"
name = "blobs/level0"
`

type TestGame struct {
	*engine.Game
	// Called once the demo is over.
	OnDone func()
}

type gameState struct {
	boot     *systems.ResourcePackage
	reloaded bool
	frames   uint64
	elapsed  time.Duration
}

// NewTestGame stages the sample data set into config.DataDir and returns
// a game that loads it. In bundle mode the data has to be packed already.
func NewTestGame(config *engine.EngineConfig) (*TestGame, error) {
	if config.BundlePath == "" {
		if err := StageData(config.DataDir); err != nil {
			return nil, err
		}
	}
	tg := &TestGame{
		Game: &engine.Game{
			Config: config,
			State:  &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown
	return tg, nil
}

// StageData writes the sample resources into dir, one file per resource.
func StageData(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	checker, err := checkerPNG(8)
	if err != nil {
		return err
	}
	files := map[resources.ResourceID][]byte{
		resources.NewResourceID("package", "boot"):           []byte(bootManifest),
		resources.NewResourceID("config", "settings"):        []byte("title = \"anima testbed\"\nvolume = 7\n"),
		resources.NewResourceID("image", "textures/checker"): checker,
		resources.NewResourceID("text", "credits"):           []byte("made with anima"),
		resources.NewResourceID("binary", "blobs/level0"):    {0xde, 0xad, 0xbe, 0xef},
	}
	for id, data := range files {
		if err := os.WriteFile(filepath.Join(dir, id.String()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func checkerPNG(size int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tg *TestGame) state() *gameState {
	return tg.State.(*gameState)
}

func (tg *TestGame) Initialize() error {
	core.LogInfo("TestGame Initialize")
	gs := tg.state()
	gs.boot = systems.NewResourcePackage(resources.HashString("boot"), tg.SystemManager.ResourceManager)
	gs.boot.Load()
	return nil
}

func (tg *TestGame) Update(deltaTime time.Duration) error {
	gs := tg.state()
	gs.frames++
	gs.elapsed += deltaTime

	if !gs.boot.HasLoaded() {
		gs.boot.Update()
		return nil
	}
	rm := tg.SystemManager.ResourceManager

	if !gs.reloaded {
		core.LogInfo("package boot online after %d frames (%s)", gs.frames, gs.elapsed)
		for i, m := range gs.boot.Package().Members {
			core.LogInfo("  #%d %s", i, m)
		}
		settings := rm.Get(resources.TypeConfig, resources.HashString("settings")).(*loaders.Config)
		img := rm.Get(resources.TypeImage, resources.HashString("textures/checker")).(*loaders.ImageResourceData)
		core.LogInfo("%s: checker %dx%d, volume %d", settings.String("title", "?"), img.Width, img.Height, settings.Int("volume", 0))

		if !tg.SystemManager.ResourceLoader.Bundled() {
			if err := tg.reloadCredits(); err != nil {
				return err
			}
		}
		gs.reloaded = true
		if tg.OnDone != nil {
			tg.OnDone()
		}
	}
	return nil
}

// reloadCredits rewrites the credits on disk and reloads them in place.
func (tg *TestGame) reloadCredits() error {
	rm := tg.SystemManager.ResourceManager
	name := resources.HashString("credits")
	id := resources.ResourceID{Type: resources.TypeText, Name: name}
	core.LogInfo("credits: %q", rm.Get(resources.TypeText, name))

	text := fmt.Sprintf("made with anima, edited at %s", time.Now().Format(time.Kitchen))
	if err := os.WriteFile(tg.SystemManager.ResourceLoader.Path(id), []byte(text), 0o644); err != nil {
		return err
	}
	core.LogInfo("credits after reload: %q", rm.Reload(resources.TypeText, name))
	return nil
}

func (tg *TestGame) Shutdown() error {
	gs := tg.state()
	if gs.boot != nil {
		gs.boot.Unload()
	}
	stats := tg.SystemManager.ResourceManager.Stats()
	core.LogInfo("requested %d, spurious %d, requeued %d, online %d, failed %d",
		stats.Requested, stats.Spurious, stats.Requeued, stats.Onlined, stats.Failed)
	return nil
}
