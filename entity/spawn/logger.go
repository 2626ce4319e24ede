package spawn

import "github.com/sirupsen/logrus"

// log 生成模块的日志记录器
var log = logrus.WithField("module", "spawn")
