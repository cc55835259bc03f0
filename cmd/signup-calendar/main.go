package main

import (
	"os"

	"github.com/klabast/wb-services/signup-calendar/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
