// Command filterengine matches web and DNS requests read as JSON lines against
// the AdGuard-syntax filter lists.
package main

import "github.com/AdguardTeam/filterengine/internal/cmd"

func main() {
	cmd.Main()
}
