// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import "github.com/ugurkocde/IntuneAutomation-sub001/cmd"

func main() {
	cmd.Execute()
}
