// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/vaultsync/cmd/vaultsync"

// execute is indirected for testing.
var execute = vaultsync.Execute

func main() {
	execute()
}
