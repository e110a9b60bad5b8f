package config

import (
	"flag"
	"strings"
)

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagMission      = flag.String("mission", "", "Mission to load: name[:default|:x,y,z]")
	flagPort         = flag.Int("port", 0, "Debug server port")
	flagSaveFile     = flag.String("save-file", "", "Path to the save database")
	flagDebugPhysics = flag.Bool("debug-physics", false, "Draw physics shapes")
	flagDebugPortals = flag.Bool("debug-portals", false, "Draw portal cells")
	flagDebugDraw    = flag.Bool("debug-draw", false, "Enable AI debug markers")
	flagShowIDs      = flag.Bool("debug-show-ids", false, "Label entities with their ids")
	flagExperimental = flag.String("experimental", "", "Comma-separated experimental features")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) error {
	if *flagMission != "" {
		ref, err := ParseMissionArg(*flagMission)
		if err != nil {
			return err
		}
		cfg.Mission.Name = ref.Name
		cfg.Mission.Spawn = missionSpawnString(*flagMission)
	}
	if *flagPort > 0 {
		cfg.Server.Port = *flagPort
	}
	if *flagSaveFile != "" {
		cfg.Data.SaveFile = *flagSaveFile
	}
	if *flagDebugPhysics {
		cfg.Debug.Physics = true
	}
	if *flagDebugPortals {
		cfg.Debug.Portals = true
	}
	if *flagDebugDraw {
		cfg.Debug.Draw = true
	}
	if *flagShowIDs {
		cfg.Debug.ShowIDs = true
	}
	if *flagExperimental != "" {
		for _, name := range strings.Split(*flagExperimental, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Experimental = append(cfg.Experimental, name)
			}
		}
	}
	return nil
}

func missionSpawnString(arg string) string {
	if _, spawn, found := strings.Cut(arg, ":"); found {
		return spawn
	}
	return ""
}
