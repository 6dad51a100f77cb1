package constant

import "os"

// <NodeDir>/                    (e.g., /home/megavibe/.mvtip)
// └── config/
//	└── mvtip_config.json
// └── databases/
//	└── tips.db

const (
	NodeDir = ".mvtip"

	ConfigSubdir   = "config"
	ConfigFileName = "mvtip_config.json"

	DatabasesSubdir = "databases"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
