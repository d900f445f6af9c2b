package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// https://github.com/Sirupsen/logrus/issues/230#issuecomment-323387380

// LogrusFileHook writes every entry as one json line to a file
type LogrusFileHook struct {
	sync.Mutex
	file      *os.File
	formatter *logrus.JSONFormatter
	levels    []logrus.Level
}

func NewLogrusFileHook(file string, flag int, chmod os.FileMode) (*LogrusFileHook, error) {
	logFile, err := os.OpenFile(file, flag, chmod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to write file on filehook %v", err)
		return nil, err
	}

	return &LogrusFileHook{
		file:      logFile,
		formatter: &logrus.JSONFormatter{},
		levels: []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
			logrus.InfoLevel,
			logrus.DebugLevel,
		},
	}, nil
}

// Fire event
func (hook *LogrusFileHook) Fire(entry *logrus.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to format entry on filehook %v", err)
		return err
	}

	hook.Lock()
	defer hook.Unlock()
	_, err = hook.file.Write(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to write file on filehook(entry.String)%v", err)
		return err
	}

	return nil
}

func (hook *LogrusFileHook) Levels() []logrus.Level {
	return hook.levels
}

func (hook *LogrusFileHook) Close() error {
	return hook.file.Close()
}
