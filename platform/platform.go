package platform

import (
	"fmt"
	"os"
	"runtime"
)

// Platform identifies the host operating system the updater is running on.
// It is resolved once at startup so installer decisions can switch over a
// closed set of values instead of comparing raw GOOS strings everywhere.
type Platform int

const (
	Other Platform = iota
	Windows
	MacOS
	Linux
)

// InstallTypePackage means the application was installed through a
// platform installer or package.
const InstallTypePackage = "package"

// InstallTypeAppImage means the application runs as a portable AppImage
// and updates by replacing the image file.
const InstallTypeAppImage = "appimage"

// Current returns the platform of the running process.
func Current() Platform {
	return FromString(runtime.GOOS)
}

// FromString maps an operating system identifier to a Platform. It accepts
// both Go's GOOS names and the win32/darwin/linux convention used by the
// update service. Unknown identifiers map to Other.
func FromString(s string) Platform {
	switch s {
	case "windows", "win32":
		return Windows
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Other
	}
}

// String returns the identifier sent to the update service.
func (p Platform) String() string {
	switch p {
	case Windows:
		return "win32"
	case MacOS:
		return "darwin"
	case Linux:
		return "linux"
	default:
		return "unknown"
	}
}

// InstallerExt returns the file extension of this platform's installer
// artifact, including the leading dot. Unknown platforms get no extension.
func (p Platform) InstallerExt() string {
	switch p {
	case Windows:
		return ".exe"
	case MacOS:
		return ".dmg"
	case Linux:
		return ".AppImage"
	default:
		return ""
	}
}

// SilentInstallArgs returns the arguments for a fully silent install.
// Only the Windows installer supports an argument convention.
func (p Platform) SilentInstallArgs() []string {
	if p == Windows {
		return []string{"/S", "/CLOSEAPPLICATIONS"}
	}

	return []string{}
}

// SilentInstallRestartArgs returns the arguments for a silent install
// that relaunches the application at execPath once finished.
func (p Platform) SilentInstallRestartArgs(execPath string) []string {
	if p == Windows {
		return []string{"/S", "/CLOSEAPPLICATIONS", fmt.Sprintf("/RESTARTCOMMANDLINE=%s", execPath)}
	}

	return []string{}
}

// InstallRestartArgs returns the arguments for a visible install that
// relaunches the application at execPath once finished. The silent flag is
// dropped on purpose so the user sees the installer UI.
func (p Platform) InstallRestartArgs(execPath string) []string {
	if p == Windows {
		return []string{"/CLOSEAPPLICATIONS", fmt.Sprintf("/RESTARTCOMMANDLINE=%s", execPath)}
	}

	return []string{}
}

// UpdateFileName returns the local file name used for a downloaded
// update artifact of the given version.
func (p Platform) UpdateFileName(version string) string {
	return fmt.Sprintf("update-%s%s", version, p.InstallerExt())
}

// InstallType reports how the running application was installed. AppImage
// launchers expose the image path through the APPIMAGE environment variable.
func InstallType() string {
	if os.Getenv("APPIMAGE") != "" {
		return InstallTypeAppImage
	}

	return InstallTypePackage
}
