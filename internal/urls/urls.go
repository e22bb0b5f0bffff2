package urls

// Documentation URLs shown in hints and troubleshooting output

// RemoteControlSettings describes the player setting that enables the
// JSON-RPC web server the subnet probe looks for.
const RemoteControlSettings = "https://kodi.wiki/view/Settings/Services/Control"

// JSONRPCReference is the JSON-RPC API reference for the remote-control client.
const JSONRPCReference = "https://kodi.wiki/view/JSON-RPC_API"

// Troubleshooting covers discovery on networks that filter multicast.
const Troubleshooting = "https://github.com/muurk/castscan#troubleshooting"
