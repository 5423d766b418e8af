package main

import (
	"medicare-server/internal"
)

func main() {
	internal.Init()
}
