package utils

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersion     = "unknown"
	develBuildVersion  = "(devel)"
	vcsRevisionKey     = "vcs.revision"
	vcsModifiedKey     = "vcs.modified"
	shortRevisionWidth = 12
	dirtySuffix        = "-dirty"
)

// ApplicationVersion may be set at link time with -ldflags "-X".
var ApplicationVersion = ""

// GetApplicationVersion reports the linked version, the module version from
// build info, or the VCS revision recorded by the Go toolchain, in that order.
func GetApplicationVersion() string {
	if trimmed := strings.TrimSpace(ApplicationVersion); trimmed != EmptyString {
		return trimmed
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return unknownVersion
	}
	if buildInfo.Main.Version != EmptyString && buildInfo.Main.Version != develBuildVersion {
		return buildInfo.Main.Version
	}
	return revisionFromSettings(buildInfo.Settings)
}

func revisionFromSettings(settings []debug.BuildSetting) string {
	var revision string
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case vcsRevisionKey:
			revision = setting.Value
		case vcsModifiedKey:
			modified = setting.Value == "true"
		}
	}
	if revision == EmptyString {
		return unknownVersion
	}
	if len(revision) > shortRevisionWidth {
		revision = revision[:shortRevisionWidth]
	}
	if modified {
		revision += dirtySuffix
	}
	return revision
}
