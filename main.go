// SPDX-License-Identifier: MPL-2.0

// Command layerpath resolves layered resource overrides.
package main

import cmd "github.com/invowk/layerpath/cmd/layerpath"

func main() {
	cmd.Execute()
}
