package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Mission.Name == "" {
		t.Error("default mission name empty")
	}
	if cfg.Audio.MasterVolume <= 0 || cfg.Audio.MasterVolume > 1 {
		t.Errorf("master volume = %v", cfg.Audio.MasterVolume)
	}
	if cfg.Debug.Draw || cfg.Debug.Physics {
		t.Error("debug toggles must default off")
	}
}

func TestParseMissionArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    MissionRef
		wantErr bool
	}{
		{arg: "miss2", want: MissionRef{Name: "miss2"}},
		{arg: "miss2:default", want: MissionRef{Name: "miss2", SpawnDefault: true}},
		{arg: "miss14:10,0,-4.5", want: MissionRef{Name: "miss14", HasPoint: true}},
		{arg: "", wantErr: true},
		{arg: ":default", wantErr: true},
		{arg: "miss2:1,2", wantErr: true},
		{arg: "miss2:a,b,c", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMissionArg(tt.arg)
		if tt.wantErr {
			if !errors.Is(err, ErrBadMissionArg) {
				t.Errorf("ParseMissionArg(%q) err = %v, want ErrBadMissionArg", tt.arg, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMissionArg(%q): %v", tt.arg, err)
			continue
		}
		if got.Name != tt.want.Name || got.SpawnDefault != tt.want.SpawnDefault || got.HasPoint != tt.want.HasPoint {
			t.Errorf("ParseMissionArg(%q) = %+v, want %+v", tt.arg, got, tt.want)
		}
	}
}

func TestParseMissionArgPoint(t *testing.T) {
	ref, err := ParseMissionArg("miss14:10, 0, -4.5")
	if err != nil {
		t.Fatalf("ParseMissionArg: %v", err)
	}
	if ref.Point.X != 10 || ref.Point.Y != 0 || ref.Point.Z != -4.5 {
		t.Fatalf("point = %+v", ref.Point)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		teardown func()
		verify   func(cfg *Config)
	}{
		{
			name:     "mission flag",
			setup:    func() { *flagMission = "miss6:default" },
			teardown: func() { *flagMission = "" },
			verify: func(cfg *Config) {
				if cfg.Mission.Name != "miss6" || cfg.Mission.Spawn != "default" {
					t.Errorf("mission = %+v", cfg.Mission)
				}
			},
		},
		{
			name:     "port flag",
			setup:    func() { *flagPort = 9090 },
			teardown: func() { *flagPort = 0 },
			verify: func(cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("port = %d", cfg.Server.Port)
				}
			},
		},
		{
			name:     "debug toggles",
			setup:    func() { *flagDebugDraw = true; *flagShowIDs = true },
			teardown: func() { *flagDebugDraw = false; *flagShowIDs = false },
			verify: func(cfg *Config) {
				if !cfg.Debug.Draw || !cfg.Debug.ShowIDs {
					t.Errorf("debug = %+v", cfg.Debug)
				}
				if cfg.Debug.Physics {
					t.Error("physics toggle leaked")
				}
			},
		},
		{
			name:     "experimental list",
			setup:    func() { *flagExperimental = "vr_hands, haptics" },
			teardown: func() { *flagExperimental = "" },
			verify: func(cfg *Config) {
				if !cfg.HasExperiment("vr_hands") || !cfg.HasExperiment("haptics") {
					t.Errorf("experimental = %v", cfg.Experimental)
				}
				if cfg.HasExperiment("nope") {
					t.Error("unknown experiment reported on")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			if err := applyFlags(cfg); err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			tt.verify(cfg)
		})
	}
}

func TestApplyFlagsBadMission(t *testing.T) {
	*flagMission = "miss2:1,2"
	defer func() { *flagMission = "" }()

	if err := applyFlags(Default()); !errors.Is(err, ErrBadMissionArg) {
		t.Fatalf("err = %v, want ErrBadMissionArg", err)
	}
}

func TestLoadFromFileAndSave(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  port: 9191
mission:
  name: miss14
debug:
  draw: true
`
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if cfg.Server.Port != 9191 || cfg.Mission.Name != "miss14" || !cfg.Debug.Draw {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Unset fields keep defaults.
	if cfg.Data.SaveFile != "saves.db" {
		t.Fatalf("save file = %q", cfg.Data.SaveFile)
	}

	out := filepath.Join(tmpDir, "out", "config.yaml")
	if err := cfg.SaveTo(out); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	round := Default()
	if err := loadFromFile(round, out); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if round.Server.Port != 9191 {
		t.Fatalf("round-trip port = %d", round.Server.Port)
	}
}
