/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/purrfect/engine"
	"github.com/spaghettifunk/purrfect/engine/core"
	"github.com/spaghettifunk/purrfect/testbed"
)

func main() {
	configPath := flag.String("config", "purrfect.toml", "path to the engine configuration")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		core.LogInfo("No configuration at '%s', using defaults.", *configPath)
		cfg = engine.DefaultConfig()
	} else if err != nil {
		core.LogFatal("%+v", err)
	}
	core.SetLogLevel(cfg.LogLevel())

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%+v", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("%+v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the loop; teardown happens on the main thread
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("%+v", err)
	}
	if runErr != nil {
		core.LogFatal("%+v", runErr)
	}
}
