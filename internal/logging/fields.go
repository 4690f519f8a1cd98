package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供缓存代/路由决策/命中来源字段，供拦截请求日志复用。
func RequestFields(generation, method, path, decision, source string) logrus.Fields {
	return logrus.Fields{
		"generation": generation,
		"method":     method,
		"path":       path,
		"decision":   decision,
		"source":     source,
		"cache_hit":  source == "hit" || source == "fallback" || source == "offline",
	}
}

// LifecycleFields 描述 install/activate 等生命周期事件。
func LifecycleFields(action, generation, state string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"generation": generation,
		"state":      state,
	}
}
