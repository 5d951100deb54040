package utils

import (
	"errors"
	"regexp"
)

// idPattern 记录与员工 ID 允许的字符
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateRecordID 验证记录 ID 格式
func ValidateRecordID(id string) error {
	if id == "" {
		return errors.New("record ID is required")
	}
	if !idPattern.MatchString(id) {
		return errors.New("record ID must be 1-64 characters of letters, digits, hyphen or underscore")
	}
	return nil
}

// ValidateActorID 验证操作者 ID 格式
func ValidateActorID(id string) error {
	if id == "" {
		return errors.New("actor ID is required")
	}
	if !idPattern.MatchString(id) {
		return errors.New("actor ID must be 1-64 characters of letters, digits, hyphen or underscore")
	}
	return nil
}
