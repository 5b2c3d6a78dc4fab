// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/rongoro/dev/cmd/dev"

func main() {
	cmd.Execute()
}
