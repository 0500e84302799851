package logger

import "go.uber.org/zap"

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Email(v string) zap.Field { return zap.String("email", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

func EventID(v string) zap.Field { return zap.String("event_id", v) }

func PlanKey(v string) zap.Field { return zap.String("plan_key", v) }

func SessionID(v string) zap.Field { return zap.String("session_id", v) }
