package utils

import (
	"github.com/segmentio/ksuid"
)

// GenerateID 生成可按时间排序的唯一ID
func GenerateID() string {
	return ksuid.New().String()
}

// ValidID reports whether s is a well formed id produced by GenerateID.
func ValidID(s string) bool {
	_, err := ksuid.Parse(s)
	return err == nil
}
