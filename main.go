package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/scorequest/scorequest-desktop/internal/bindings"
	"github.com/scorequest/scorequest-desktop/internal/config"
	"github.com/scorequest/scorequest-desktop/internal/keystore"
	"github.com/scorequest/scorequest-desktop/internal/lbclient"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	appConfigDirName = "scorequest-desktop"
	keyringService   = "scorequest-desktop"
	secretsFileName  = "secrets.json"
	repoURL          = "https://github.com/scorequest/scorequest-desktop"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func buildWindowsOptions() *windows.Options {
	return &windows.Options{
		BackdropType: windows.Mica,
		Theme:        windows.Dark,

		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,

		DisablePinchZoom:     true,
		IsZoomControlEnabled: false,
		ZoomFactor:           1.0,

		WindowClassName: "ScoreQuestWindow",
	}
}

func buildMacOptions() *mac.Options {
	return &mac.Options{
		TitleBar: mac.TitleBarHiddenInset(),
		About: &mac.AboutInfo{
			Title:   "ScoreQuest",
			Message: "Click the glowing targets, build combos and earn your spot on the leaderboard.",
		},
	}
}

func buildLinuxOptions() *linux.Options {
	return &linux.Options{
		WindowIsTranslucent: false,
		WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,
		ProgramName:         "scorequest",
	}
}

func main() {
	log.Printf("Starting ScoreQuest (Go %s)...", runtime.Version())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client := lbclient.New(lbclient.Config{
		BaseURL:    cfg.Client.APIURL,
		MaxRetries: uint64(cfg.Client.MaxRetries),
		HTTPClient: &http.Client{Timeout: cfg.Client.Timeout},
	})

	tokens := keystore.New(keyringService, filepath.Join(appDataDir(), secretsFileName))
	switch token, err := tokens.SubmitToken(cfg.Client.APIURL); {
	case err == nil:
		client.SetSubmitToken(token)
	case errors.Is(err, keystore.ErrNotFound):
		client.SetSubmitToken(cfg.Client.SubmitToken)
	default:
		log.Printf("submit token lookup failed: %v", err)
		client.SetSubmitToken(cfg.Client.SubmitToken)
	}

	game := bindings.NewGameModule(client,
		bindings.WithLogger(log.New(os.Stdout, "[bindings] ", log.LstdFlags)),
		bindings.WithTokenStore(tokens, cfg.Client.APIURL),
		bindings.WithSubmitTimeout(cfg.Client.Timeout),
	)

	startup := func(ctx context.Context) {
		setAppContext(ctx)
		game.Startup(ctx)
		log.Printf("Leaderboard API at %s", client.BaseURL())
	}

	beforeClose := func(ctx context.Context) (prevent bool) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := game.Shutdown(shutdownCtx); err != nil {
			log.Printf("game module shutdown error: %v", err)
		}
		setAppContext(nil)
		log.Println("Application is closing")
		return false
	}

	if err := wails.Run(&options.App{
		Title:            "ScoreQuest",
		Width:            1024,
		Height:           768,
		MinWidth:         860,
		MinHeight:        640,
		WindowStartState: options.Normal,
		BackgroundColour: &options.RGBA{R: 17, G: 12, B: 38, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			log.Println("Application shutdown complete")
		},

		Menu: buildAppMenu(game),
		Bind: []interface{}{game},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu: false,

		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "5b0c1e7a-3f4d-4a2e-9c61-scorequest-desktop",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				log.Printf("Second instance launch prevented. Args: %v", data.Args)
			},
		},

		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		Windows: buildWindowsOptions(),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	}); err != nil {
		log.Printf("Error running Wails app: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log.Println("Application exited normally")
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}

func buildAppMenu(game *bindings.GameModule) *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	gameMenu := menu.NewMenu()
	gameMenu.AddText("New Game", keys.CmdOrCtrl("n"), func(_ *menu.CallbackData) {
		if _, err := game.StartGame(); err != nil {
			log.Printf("start game from menu: %v", err)
		}
	})
	gameMenu.AddText("End Game", keys.CmdOrCtrl("e"), func(_ *menu.CallbackData) {
		if _, err := game.EndGame(); err != nil {
			log.Printf("end game from menu: %v", err)
		}
	})
	gameMenu.AddSeparator()
	gameMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("Game", gameMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Frontend", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	viewMenu.AddText("Toggle Fullscreen", keys.Combo("f", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			toggleFullscreen(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func toggleFullscreen(ctx context.Context) {
	if wruntime.WindowIsFullscreen(ctx) {
		wruntime.WindowUnfullscreen(ctx)
		return
	}
	wruntime.WindowFullscreen(ctx)
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		log.Println("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
