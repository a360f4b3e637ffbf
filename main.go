// The main package for the webmonitor executable.
package main

import (
	"github.com/JakeFAU/webmonitor/cmd"
)

func main() {
	cmd.Execute()
}
