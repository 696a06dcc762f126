package triage

import "propcare_backend/platform/logger"

func testLogger() *logger.Logger {
	return logger.New("development")
}
