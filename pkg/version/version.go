package version

// Current is overwritten at build time with -ldflags "-X .../version.Current=...".
var Current = "dev"

const AppName = "kgexplain"
