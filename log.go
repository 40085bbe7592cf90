package main

import (
	logging "github.com/ipfs/go-log/v2"
)

var (
	mainLog  = logging.Logger("crowdtraq")
	radioLog = logging.Logger("radio")
	wsLog    = logging.Logger("ws")
)
