package main

import "github.com/frahmantamala/spm-sp2d/cmd"

func main() {
	cmd.Execute()
}
