package devices

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mobile-next/mobilecv/utils"
	"gopkg.in/ini.v1"
)

// AVDInfo describes an Android Virtual Device found under ~/.android/avd.
type AVDInfo struct {
	ID          string
	DisplayName string
	APILevel    string
}

var apiLevelToVersion = map[string]string{
	"36": "16.0",
	"35": "15.0",
	"34": "14.0",
	"33": "13.0",
	"32": "12.1", // Android 12L
	"31": "12.0",
	"30": "11.0",
	"29": "10.0",
	"28": "9.0",
	"27": "8.1",
	"26": "8.0",
	"25": "7.1",
	"24": "7.0",
	"23": "6.0",
	"22": "5.1",
	"21": "5.0",
}

// Version returns the Android release of the image, or the API level when
// it is not known.
func (a AVDInfo) Version() string {
	if version, ok := apiLevelToVersion[a.APILevel]; ok {
		return version
	}
	return a.APILevel
}

// loadAVDs reads every <name>.ini in avdDir and the config.ini it points
// to, keyed by AVD id. Unreadable entries are skipped.
func loadAVDs(avdDir string) (map[string]AVDInfo, error) {
	avds := make(map[string]AVDInfo)
	if avdDir == "" {
		return avds, nil
	}

	matches, err := filepath.Glob(filepath.Join(avdDir, "*.ini"))
	if err != nil {
		return avds, err
	}

	for _, iniFile := range matches {
		iniConfig, err := ini.Load(iniFile)
		if err != nil {
			utils.Verbose("Failed to read %s: %v", iniFile, err)
			continue
		}

		avdPath := iniConfig.Section("").Key("path").String()
		if avdPath == "" {
			continue
		}

		configPath := filepath.Join(avdPath, "config.ini")
		configData, err := ini.Load(configPath)
		if err != nil {
			utils.Verbose("Failed to read %s: %v", configPath, err)
			continue
		}

		section := configData.Section("")
		id := section.Key("AvdId").MustString(strings.TrimSuffix(filepath.Base(iniFile), ".ini"))
		displayName := section.Key("avd.ini.displayname").String()
		if displayName == "" {
			displayName = strings.ReplaceAll(id, "_", " ")
		}

		avds[id] = AVDInfo{
			ID:          id,
			DisplayName: displayName,
			// "android-31" -> "31"
			APILevel: strings.TrimPrefix(section.Key("target").String(), "android-"),
		}
	}

	return avds, nil
}

func defaultAVDDir() string {
	if dir := os.Getenv("ANDROID_AVD_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".android", "avd")
}

// emulatorAVD asks a running emulator which AVD it boots, through the
// emulator console that adb relays.
func emulatorAVD(ctx context.Context, serial string, avds map[string]AVDInfo) (AVDInfo, bool) {
	output, err := NewAdb(serial).Run(ctx, "emu", "avd", "name")
	if err != nil {
		utils.Verbose("Failed to read AVD name of %s: %v", serial, err)
		return AVDInfo{}, false
	}
	return lookupAVD(string(output), avds)
}

// lookupAVD matches the console reply ("Pixel_9_Pro\r\nOK") to an AVD.
func lookupAVD(consoleOutput string, avds map[string]AVDInfo) (AVDInfo, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(consoleOutput), "\n")
	name = strings.TrimSpace(name)
	if name == "" {
		return AVDInfo{}, false
	}
	if info, ok := avds[name]; ok {
		return info, true
	}
	return AVDInfo{ID: name, DisplayName: strings.ReplaceAll(name, "_", " ")}, true
}
