package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

// ErrorLogFormat defines the formatting string for error log messages.
const ErrorLogFormat = "Error: %v"

// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
const LoggerInitializationFailedMessageFormat = "initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal command errors.
const ApplicationExecutionFailedMessage = "codereview failed"

const (
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".codereview.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".codereview"
	// GlobalConfigFileName is the name of the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// IgnoreFileName is the name of the tool specific ignore file honored inside working copies.
	IgnoreFileName = ".ignore"
	// EnvironmentFileName is the dotenv file loaded before resolving credentials.
	EnvironmentFileName = ".env"
	// WorkspaceDirectoryName is the directory under the system temp dir holding cloned repositories.
	WorkspaceDirectoryName = "codereview"
)
