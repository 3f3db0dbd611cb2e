package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestShaderModuleInfo(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	info, err := shaderModuleInfo(code)
	if err != nil {
		t.Fatalf("shaderModuleInfo: %v", err)
	}
	if info.SType != vk.StructureTypeShaderModuleCreateInfo {
		t.Errorf("SType = %d", info.SType)
	}
	if info.CodeSize != uint64(len(code)) {
		t.Errorf("CodeSize = %d, want %d bytes", info.CodeSize, len(code))
	}
	if len(info.PCode) != 2 || info.PCode[0] != spirvMagic || info.PCode[1] != 0x00010000 {
		t.Errorf("PCode = %#x", info.PCode)
	}
}

func TestShaderModuleInfoRejects(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"empty", nil},
		{"unaligned", []byte{0x03, 0x02, 0x23, 0x07, 0x00}},
		{"big endian", []byte{0x07, 0x23, 0x02, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := shaderModuleInfo(tt.code); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
