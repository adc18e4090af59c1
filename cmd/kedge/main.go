package main

import (
	"os"

	"github.com/kedgeproxy/kedge/internal/app"
)

func main() {
	os.Exit(app.Main(os.Args))
}
