package main

import (
	"os"

	"github.com/inkwell-app/inkwell/backend"
	"github.com/inkwell-app/inkwell/frontend"
)

func main() {
	// "inkwell shell" runs only the interactive ops CLI against an already
	// running server; the default runs the backend itself.
	if len(os.Args) > 1 && os.Args[1] == "shell" {
		frontend.RunFrontend()
		return
	}

	backend.RunBackend()
}
