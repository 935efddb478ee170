// Package logger expone un logger zap único para todo el proceso y un logger
// "scoped" por request que viaja en el context.
//
// Inicialización (una vez, en cmd/authvital):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "authvital"})
//	defer logger.Sync()
//
// En services y controllers:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("TokenService.Exchange"))
//	log.Warn("authorization code replay", logger.UserID(uid), logger.ClientID(cid))
package logger
