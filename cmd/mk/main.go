// Copyright © 2018 One Concern

package main

import "github.com/oneconcern/microkernel/cmd/mk/cmd"

func main() {
	cmd.Execute()
}
