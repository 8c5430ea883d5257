// Command hoursctl keeps a personal driving hours log in a local SQLite file
// and checks it against the drivers' hours rules.
package main

import (
	"context"
	"os"
	_ "time/tzdata"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"

	"example.com/drivinghours/internal/app"
)

func main() {
	_ = godotenv.Load()

	if err := fang.Execute(context.Background(), newRootCmd(),
		fang.WithVersion(app.BuildVersion()),
		fang.WithColorSchemeFunc(fang.DefaultColorScheme),
	); err != nil {
		os.Exit(1)
	}
}
