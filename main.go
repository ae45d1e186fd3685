package main

import (
	"os"

	cmd "github.com/git-pkgs/safe-pkgs/cmd/safe-pkgs"

	_ "github.com/git-pkgs/safe-pkgs/internal/cargo"
	_ "github.com/git-pkgs/safe-pkgs/internal/golang"
	_ "github.com/git-pkgs/safe-pkgs/internal/npm"
	_ "github.com/git-pkgs/safe-pkgs/internal/pypi"
	_ "github.com/git-pkgs/safe-pkgs/internal/rubygems"
)

func main() {
	os.Exit(cmd.Execute())
}
