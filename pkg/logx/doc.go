// Package logx is edgesched's zerolog wrapper.
//
// Components take a Logger by value and derive their own with With. The
// Service behind it owns the console and file outputs and rebuilds them on
// config reload, so derived loggers pick up a new level or file without
// being recreated.
package logx
