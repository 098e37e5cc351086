package voxel

import (
	"fmt"
	"strings"

	. "github.com/janelia-flyem/go/gocheck"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) add(level, format string, args ...interface{}) {
	r.lines = append(r.lines, level+" "+strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (r *recordingLogger) Debugf(format string, args ...interface{}) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Infof(format string, args ...interface{})  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warningf(format string, args ...interface{}) {
	r.add("WARNING", format, args...)
}
func (r *recordingLogger) Errorf(format string, args ...interface{}) { r.add("ERROR", format, args...) }
func (r *recordingLogger) Shutdown()                                 {}

type LogSuite struct{}

var _ = Suite(&LogSuite{})

func (s *LogSuite) TestLogMode(c *C) {
	rec := &recordingLogger{}
	SetLogger(rec)
	oldMode := mode
	defer func() {
		SetLogger(nil)
		SetLogMode(oldMode)
	}()

	SetLogMode(WarningMode)
	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warningf("shown %d", 3)
	Errorf("shown %d", 4)
	c.Assert(rec.lines, DeepEquals, []string{"WARNING shown 3", "ERROR shown 4"})

	SetLogMode(SilentMode)
	Errorf("nothing")
	c.Assert(rec.lines, HasLen, 2)

	SetLogMode(DebugMode)
	tlog := NewTimeLog()
	tlog.Debugf("decoded slice %d", 7)
	c.Assert(rec.lines, HasLen, 3)
	c.Assert(strings.HasPrefix(rec.lines[2], "DEBUG decoded slice 7: "), Equals, true)
}

func (s *LogSuite) TestLevelConfig(c *C) {
	oldMode := mode
	defer SetLogMode(oldMode)

	for name, want := range map[string]ModeFlag{"": InfoMode, "debug": DebugMode, "Warning": WarningMode, "SILENT": SilentMode} {
		m, err := ParseLogMode(name)
		c.Assert(err, IsNil)
		c.Assert(m, Equals, want)
	}
	_, err := ParseLogMode("critical")
	c.Assert(err, NotNil)
	c.Assert(ErrorMode.String(), Equals, "error")

	cfg := &LogConfig{Level: "error"}
	cfg.SetLogger()
	c.Assert(mode, Equals, ErrorMode)

	cfg.Level = "chatty"
	cfg.SetLogger()
	c.Assert(mode, Equals, ErrorMode)
}
