package main

import "github.com/theirongolddev/bdash/cmd"

func main() {
	cmd.Execute()
}
