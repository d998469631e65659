package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
)

type CLISuite struct {
	suite.Suite
	dir  string
	file string
}

func (s *CLISuite) SetupTest() {
	s.dir = s.T().TempDir()
	data, err := marshal.Encode(marshal.NewArray(
		marshal.Integer(1),
		marshal.NewString("a"),
		marshal.NewObject("Point", marshal.F("@x", marshal.Integer(2))),
	))
	s.Require().NoError(err)
	s.file = filepath.Join(s.dir, "a.dat")
	s.Require().NoError(os.WriteFile(s.file, data, 0o600))
}

func (s *CLISuite) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (s *CLISuite) TestDumpValue() {
	code, out, _ := s.run("dump", s.file)
	s.Equal(exitOK, code)
	s.Equal("[1, \"a\", #<Point @x=2>]\n", out)
}

func (s *CLISuite) TestDumpJSON() {
	code, out, _ := s.run("dump", "--format", "json", s.file)
	s.Equal(exitOK, code)
	s.Equal(`[1,"a",{"__class":"Point","@x":2}]`+"\n", out)
}

func (s *CLISuite) TestDumpMultiple() {
	other := filepath.Join(s.dir, "b.dat")
	data, err := marshal.Encode(marshal.Nil{})
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(other, data, 0o600))

	code, out, _ := s.run("dump", "-f", "yaml", s.file, other)
	s.Equal(exitOK, code)
	s.Contains(out, "==> "+s.file+" <==")
	s.Contains(out, "==> "+other+" <==")
	s.Less(strings.Index(out, s.file), strings.Index(out, other))
}

func (s *CLISuite) TestRoundTrip() {
	code, out, _ := s.run("roundtrip", "--symbol-links", s.file)
	s.Equal(exitOK, code)
	s.True(strings.HasPrefix(out, "ok\t"+s.file+"\t"), out)
}

func (s *CLISuite) TestFailures() {
	code, _, errOut := s.run("dump", filepath.Join(s.dir, "missing.dat"))
	s.Equal(exitFail, code)
	s.Contains(errOut, "missing.dat")

	code, _, _ = s.run("dump", "--format", "xml", s.file)
	s.Equal(exitUsage, code)

	code, _, _ = s.run("dump")
	s.Equal(exitUsage, code)

	code, _, _ = s.run("explode", s.file)
	s.Equal(exitUsage, code)

	code, _, _ = s.run()
	s.Equal(exitUsage, code)

	code, _, _ = s.run("--config", filepath.Join(s.dir, "missing.yaml"), "dump", s.file)
	s.Equal(exitFail, code)
}

func TestCLI(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "roundtrip")
}
