// Package logger provee el logger estructurado del servicio (zap).
//
// Uso:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info"})
//	defer logger.Sync()
//
//	log := logger.Named("token")
//	log.Info("pair issued", logger.UserID(id))
//
// Nunca loguear material secreto: passwords, refresh tokens, hashes.
// Los emails se loguean enmascarados (util.MaskEmail).
package logger
