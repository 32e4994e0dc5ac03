// Package loader registers HTTP features and mounts the enabled ones.
//
// A Feature names itself, says whether it should be mounted and registers
// its routes on a fiber.Router. The serve command registers "sync" and
// "transactions" with a Manager and calls LoadAll once middleware is in place;
// a feature that reports itself disabled is skipped with a log line.
package loader
