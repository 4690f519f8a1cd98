package main

import (
	"bytes"
	"testing"
)

// captureCLIOutput 在测试期间把 stdOut/stdErr 换成内存缓冲，结束后自动还原。
func captureCLIOutput(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()

	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = out, errOut
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out, errOut
}
