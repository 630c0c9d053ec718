package commands

import "github.com/bwmarrin/discordgo"

var noDM = false
var manageGuildPermission int64 = discordgo.PermissionManageServer
var moderatePermission int64 = discordgo.PermissionBanMembers | discordgo.PermissionKickMembers | discordgo.PermissionModerateMembers
var adminPermission int64 = discordgo.PermissionAdministrator

var Commands = []*discordgo.ApplicationCommand{
	&habitCommand,
	&leaderboardCommand,
	&myrankCommand,
	&welcomeCommand,
	&configCommand,
	&modCommand,
	&rosterCommand,
}

var habitCommand = discordgo.ApplicationCommand{
	Name:         "habit",
	Description:  "Increment your daily habit counter (once per UTC day)",
	DMPermission: &noDM,
}

var leaderboardCommand = discordgo.ApplicationCommand{
	Name:         "leaderboard",
	Description:  "Show the guild habit leaderboard",
	DMPermission: &noDM,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "page",
			Description: "Page to show (default 1)",
			Required:    false,
		},
	},
}

var myrankCommand = discordgo.ApplicationCommand{
	Name:         "myrank",
	Description:  "Show a member's leaderboard rank",
	DMPermission: &noDM,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to look up (defaults to you)",
			Required:    false,
		},
	},
}

var welcomeCommand = discordgo.ApplicationCommand{
	Name:                     "welcome",
	Description:              "Various commands related to the welcome system",
	DMPermission:             &noDM,
	DefaultMemberPermissions: &manageGuildPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "test",
			Description: "Test the welcome message",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to welcome",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "toggle",
			Description: "Enable or disable the welcome system",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "settings",
			Description: "Show current welcome settings",
		},
	},
}

var configCommand = discordgo.ApplicationCommand{
	Name:                     "config",
	Description:              "Various commands related to configuration",
	DMPermission:             &noDM,
	DefaultMemberPermissions: &manageGuildPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "Lists available config options with their current values",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
			Name:        "set",
			Description: "Updates config with provided values",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "welcome_channel",
					Description: "Set the welcome channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "channel",
							Description: "New welcome channel",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "welcome_role",
					Description: "Set the auto-role for new members",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "Role assigned to new members",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "welcome_message",
					Description: "Set the welcome message template",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "message",
							Description: "Template; placeholders: {user_mention} {user_name} {guild_name} {member_count} {join_position}",
							Required:    true,
						},
					},
				},
			},
		},
	},
}

var modCommand = discordgo.ApplicationCommand{
	Name:                     "mod",
	Description:              "Moderation commands",
	DMPermission:             &noDM,
	DefaultMemberPermissions: &moderatePermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "ban",
			Description: "Ban a member (asks for confirmation)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the ban",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "kick",
			Description: "Kick a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to kick",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the kick",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "mute",
			Description: "Timeout a member for one hour",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to mute",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the mute",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "timeout",
			Description: "Timeout a member for a custom duration",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to timeout",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "Duration like 30m, 2h or 1d",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the timeout",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "purge",
			Description: "Delete recent messages in a channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many messages to delete (1-100)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to purge (defaults to current)",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "history",
			Description: "Show recent moderation actions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Only actions against this member",
					Required:    false,
				},
			},
		},
	},
}

var rosterCommand = discordgo.ApplicationCommand{
	Name:                     "roster",
	Description:              "Member record maintenance (owner only)",
	DMPermission:             &noDM,
	DefaultMemberPermissions: &adminPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "analyze",
			Description: "Compare live membership against stored records and sync drift",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "list",
			Description: "List stored member records by join position",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page to show (default 1)",
					Required:    false,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "sync",
			Description: "Reconcile stored records with live membership",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "rebuild",
			Description: "Wipe and rebuild all member records (asks for confirmation)",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "info",
			Description: "Show the stored record of a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to inspect",
					Required:    true,
				},
			},
		},
	},
}
