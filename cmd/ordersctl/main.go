package main

import "teamorders/internal/ctl"

func main() {
	ctl.Execute()
}
