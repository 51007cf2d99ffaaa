package main

import "gestor/internal/app/server"

func main() {
	server.Run()
}
