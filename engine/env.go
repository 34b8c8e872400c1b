package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// EnvResolver 负责定位系统中的外部工具
type EnvResolver struct {
	exeDir   string
	override string
}

// NewEnvResolver override 为配置中指定的 ffmpeg 路径，可为空
func NewEnvResolver(override string) *EnvResolver {
	exePath, _ := os.Executable()
	return &EnvResolver{
		exeDir:   filepath.Dir(exePath),
		override: override,
	}
}

// GetToolPath 依次查找：
//
//	{exeDir}/bin/{toolName}/{fileName}
//	{exeDir}/../../runtime_dep/{toolName}/{fileName}  (开发环境布局)
//	$PATH
func (e *EnvResolver) GetToolPath(toolName, fileName string) string {
	pathA := filepath.Join(e.exeDir, "bin", toolName, fileName)
	if _, err := os.Stat(pathA); err == nil {
		return pathA
	}

	pathB := filepath.Join(e.exeDir, "..", "..", "runtime_dep", toolName, fileName)
	if _, err := os.Stat(pathB); err == nil {
		return pathB
	}

	if p, err := exec.LookPath(fileName); err == nil {
		return p
	}
	return ""
}

// GetFFmpegPath 配置优先，其次按目录布局查找
func (e *EnvResolver) GetFFmpegPath() string {
	if e.override != "" {
		return e.override
	}
	return e.GetToolPath("ffmpeg", executableName("ffmpeg"))
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
