package main

import (
	"context"
	"fmt"
	"os"

	"courier-dispatch/internal/config"
	dispatchservice "courier-dispatch/internal/dispatch-service"
	"courier-dispatch/internal/mylogger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: app dispatch-service")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "dispatch-service":
		cfg, err := config.New()
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load config:", err)
			os.Exit(1)
		}

		mylog, err := mylogger.New(cfg.Log.Level)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to create logger:", err)
			os.Exit(1)
		}

		if err := dispatchservice.Execute(context.Background(), mylog, cfg); err != nil {
			mylog.Error("service exited with error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown service %q\n", os.Args[1])
		os.Exit(1)
	}
}
