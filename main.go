package main

import (
	_ "github.com/lthummus/loginguard/internal/ainit"
	"github.com/lthummus/loginguard/internal/cmd"
)

func main() {
	cmd.Execute()
}
