// Package cpudetection reports CPU features for the speed benchmark's
// header line (spec SPEC_FULL.md §4.9, "bench"). codn's primitives are
// fixed by the wire format (spec §4.1), so unlike the teacher this package
// never drives a backend choice -- it only has something to tell the user.
package cpudetection

import (
	"runtime"
	"strings"

	"github.com/rtmigo/codn/internal/tlog"
)

// CPUFeatures represents detected CPU capabilities.
type CPUFeatures struct {
	AESNI bool
	AVX2  bool
	NEON  bool
	Arch  string
}

// CPUDetector reports CPU features. They are inferred from runtime.GOARCH
// alone: every amd64 host is reported as having AES-NI and AVX2, every
// arm64 host as having NEON, and no instruction-set probe is made.
type CPUDetector struct {
	features *CPUFeatures
}

// New creates a new CPUDetector instance.
func New() *CPUDetector {
	cd := &CPUDetector{}
	cd.detectFeatures()
	return cd
}

// GetFeatures returns the detected CPU features.
func (cd *CPUDetector) GetFeatures() *CPUFeatures {
	return cd.features
}

func (cd *CPUDetector) detectFeatures() {
	cd.features = &CPUFeatures{Arch: runtime.GOARCH}

	switch cd.features.Arch {
	case "amd64":
		cd.features.AESNI = true
		cd.features.AVX2 = true
	case "arm64":
		cd.features.NEON = true
	}

	tlog.Debug.Printf("cpudetection: arch=%s aesni=%v avx2=%v neon=%v",
		cd.features.Arch, cd.features.AESNI, cd.features.AVX2, cd.features.NEON)
}

// GetArchitecture returns the CPU architecture string (runtime.GOARCH).
func (cd *CPUDetector) GetArchitecture() string {
	return cd.features.Arch
}

// String returns a human-readable one-line summary, printed as the header
// of "codn bench" output.
func (cd *CPUDetector) String() string {
	features := cd.GetFeatures()
	parts := []string{"arch: " + features.Arch}
	if features.AESNI {
		parts = append(parts, "AES-NI")
	}
	if features.AVX2 {
		parts = append(parts, "AVX2")
	}
	if features.NEON {
		parts = append(parts, "NEON")
	}
	return strings.Join(parts, ", ")
}
