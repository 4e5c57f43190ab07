// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/crossrun/crossrun/cmd/crossrun"

func main() {
	cmd.Execute()
}
