package main

import (
	"github.com/openwatt/nilmd/cmd"
	"github.com/openwatt/nilmd/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
