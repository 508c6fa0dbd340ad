package resources

import "fmt"

// Logical paths of the files a build needs
const (
	KawaJar              = "files/kawa.jar"
	AndroidRuntimeJar    = "files/AndroidRuntime.jar"
	Twitter4jJar         = "files/twitter4j.jar"
	AndroidPlatformJar   = "files/android.jar"
	DxJar                = "files/dx.jar"
	RuntimeScheme        = "files/runtime.scm"
	SdkLibJar            = "files/sdklib.jar"
	DefaultIcon          = "files/ya.png"
	ComponentPermissions = "files/simple_components_permissions.json"

	MacAapt     = "tools/mac/aapt"
	LinuxAapt   = "tools/linux/aapt"
	WindowsAapt = "tools/windows/aapt"
)

// AaptToolFor selects the packaging tool built for goos
func AaptToolFor(goos string) (string, error) {
	switch goos {
	case "darwin":
		return MacAapt, nil
	case "linux":
		return LinuxAapt, nil
	case "windows":
		return WindowsAapt, nil
	default:
		return "", fmt.Errorf("no aapt binary for %q", goos)
	}
}
