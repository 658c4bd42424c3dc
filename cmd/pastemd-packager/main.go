package main

import "github.com/richqaq/pastemd-packager/cmd/pastemd-packager/cmd"

func main() {
	cmd.Execute()
}
