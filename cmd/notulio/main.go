package main

import (
	"notulio/cmd/handlers"
	"notulio/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
