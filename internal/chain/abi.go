package chain

// BulkSenderABI is the interface of the BulkSender contract.
const BulkSenderABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "_token", "type": "address"},
			{"name": "_to", "type": "address[]"},
			{"name": "_values", "type": "uint256[]"}
		],
		"name": "bulkTransfer",
		"outputs": [],
		"payable": false,
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// TokenABI is the subset of the ERC20 token interface used here.
const TokenABI = `[
	{
		"constant": false,
		"inputs": [{"name": "_value", "type": "uint256"}],
		"name": "burn",
		"outputs": [],
		"payable": false,
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	}
]`
