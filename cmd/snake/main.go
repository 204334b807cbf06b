package main

import (
	"math/rand"
	"time"

	"github.com/gridsnake/engine/cmd/snake/commands"
)

func main() {
	rand.Seed(time.Now().UnixNano())
	commands.Execute()
}
